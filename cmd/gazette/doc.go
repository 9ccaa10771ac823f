// Package main hosts the gazette operator CLI.
//
// Commands run the identify-and-archive pipeline in-process, archive
// records that were identified elsewhere, scrape index pages into the job
// queue, and report on the local toolchain. Pipeline behaviour lives in the
// internal packages; this package only resolves configuration, builds
// loggers and renders results.
package main
