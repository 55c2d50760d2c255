/*
Package journal persists a record of every reconciliation run in a
local BoltDB file, so an operator can answer "what did it do last
night" without scraping logs.

Records are keyed by start time and listed newest first. The journal
is an audit trail, not state: planning never reads it, and deleting
the file loses history but changes no behavior.
*/
package journal
