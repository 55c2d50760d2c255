/*
Package report renders snapshots, plans, and execution results for the
CLI, in both human-readable text and JSON.

The text renderers keep facts and judgment apart: the snapshot table
shows what each declared endpoint reported, while the plan listing
carries the reasons the planner attached. JSON output goes through
dedicated view structs so the core types stay free of serialization
concerns.
*/
package report
