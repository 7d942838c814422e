// Package prometheus renders forgeauth metrics in the Prometheus text
// exposition format. Mount [Exporter.Handler] on the scrape path; nothing is
// registered globally.
package prometheus
