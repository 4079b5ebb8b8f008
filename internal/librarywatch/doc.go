// Package librarywatch debounces filesystem notifications for the library
// directory into scan triggers.
package librarywatch
