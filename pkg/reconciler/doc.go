/*
Package reconciler drives the full convergence cycle for one declared
topology: probe the live cluster, plan the difference, gate the work,
execute it, and verify the result.

# Architecture

Every run walks the same level-triggered pipeline. Nothing is carried
over between runs; each one starts from a fresh probe of every
declared endpoint.

	┌──────────────────────────────────────────────────┐
	│                     One Run                      │
	└───────┬──────────────────────────────────────────┘
	        │
	        ▼
	   Probe all declared endpoints (bounded concurrency)
	        │
	        ▼
	   Build snapshot (reference dump + per-node roles)
	        │
	        ▼
	   Plan (pure function of topology + snapshot)
	        │
	        ▼
	   Present + Gate ──── declined ──→ journal, ErrDeclined
	        │ approved
	        ▼
	   Execute plan sequentially
	        │
	        ▼
	   Verify: fresh probe, fresh plan, converged = no work left
	        │
	        ▼
	   Journal + metrics

# Modes

Plan mode stops after planning and never touches the gate or the
executor. Apply mode runs the whole pipeline once. Watch mode calls
the same pipeline on a fixed interval with automatic approval, logging
each iteration and feeding the /healthz endpoint; it is the mode meant
to run unattended next to the cluster.

# Verification

Convergence is never inferred from the executor's report. After the
plan is applied the reconciler probes again and plans again; the run
converged only if that second plan contains no work. A half-applied
run therefore reports converged=false and the next run picks up the
remainder, which is the level-triggered contract: observed state is
re-derived every time, never assumed from past actions.

# Failure handling

Individual action failures live inside the execution report and do not
fail the run; they surface as converged=false plus per-action detail.
Run returns an error only when the run itself could not proceed: no
declared endpoint answered its probe, or the gate failed to read its
input. A journal write failure is
logged and swallowed: losing an audit entry must not block cluster
repair.

# Journal

When a journal store is attached every run is recorded, including
declined and plan-only runs. The journal is write-only here; planning
never consults history.
*/
package reconciler
