/*
Package log provides structured logging for redkeeper built on zerolog.

Init configures the global logger once at process start; packages derive
child loggers with WithComponent, WithUnit, or WithEvent so every line
carries the component and unit identity.
*/
package log
