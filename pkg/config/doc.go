/*
Package config loads and validates the declared topology file.

The topology file is YAML:

	auth: <password>
	pairs:
	  - master: 10.0.0.1:6379
	    replica: 10.0.0.4:6379
	  - master: 10.0.0.2:6379
	    replica: 10.0.0.5:6379
	probe:
	  connect_timeout: 5s
	  command_timeout: 5s
	failover:
	  attempts: 10
	  backoff: 500ms

Pair order is significant: it drives reference node selection and the
order in which planned actions execute. Validation is complete before
any network connection is opened; an invalid file is a fatal error,
never a degraded run. Every address must parse as host:port and be
unique across both columns, and the shared auth credential must be
non-empty.
*/
package config
