// Package poppler wraps pdftoppm for whole-document PDF rasterization and
// reads PDF page counts in-process.
package poppler
