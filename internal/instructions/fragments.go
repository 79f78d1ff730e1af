package instructions

// Fragment keys. The set is fixed; seeding writes exactly these files to
// .iris/instructions/.
const (
	KeySystemCore       = "system_core"
	KeyCodingRules      = "coding_rules"
	KeyToolsGeneral     = "tools_general"
	KeyMemoryProtocol   = "memory_protocol"
	KeyContextSelection = "context_selection"
	KeyModePlanner      = "mode_planner"
)

// coreOrder is the concatenation order for GetCoreInstructions. The order
// is part of the contract: the same fragments must always produce the same
// bytes.
var coreOrder = []string{KeySystemCore, KeyToolsGeneral, KeyMemoryProtocol}

// defaultFragments holds the pre-baked fragment bodies. They are compact
// on purpose: every prompt carries the core ones.
var defaultFragments = map[string]string{
	KeySystemCore: `You are an autonomous agent operating inside a sandboxed workspace.
Work in small verifiable steps. Prefer reading existing state over guessing.
All files under .iris/ belong to the runtime; do not modify them directly.`,

	KeyCodingRules: `When writing code:
- Make the smallest change that satisfies the task.
- Run available checks before declaring work complete.
- Keep generated files out of version control unless asked.`,

	KeyToolsGeneral: `Tool results may be truncated or offloaded. Check metadata before
assuming you have seen complete output. Tool calls execute in the order
you declare them unless marked pure.`,

	KeyMemoryProtocol: `Large outputs are offloaded to the memory store. A message ending with
the marker [See memory_refs] is a summary: do not attempt to read more
from the message itself. Use the memory_fetch tool with the referenced
memory_id and a small line range (line_start/line_end) or byte range.
Fetch only the slice you need; single requests are capped.`,

	KeyContextSelection: `Prefer the most recent turn summaries and key artifacts when deciding
what to re-read. Older conversation content is reachable only through
memory references.`,

	KeyModePlanner: `Planner mode: decompose the task into ordered phases before acting.
Record the active phase so interrupted sessions can resume.`,
}

// Keys returns all fragment keys in a stable order.
func Keys() []string {
	return []string{
		KeySystemCore,
		KeyCodingRules,
		KeyToolsGeneral,
		KeyMemoryProtocol,
		KeyContextSelection,
		KeyModePlanner,
	}
}
