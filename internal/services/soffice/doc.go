// Package soffice wraps headless LibreOffice for presentation-to-PDF
// conversion with timeout enforcement and profile locking.
package soffice
