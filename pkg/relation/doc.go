/*
Package relation publishes connection data for consumer applications:
the current primary's host and port, plus the CA certificate when the
deployment serves TLS.
*/
package relation
