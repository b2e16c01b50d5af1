// Package blocks defines the independently approvable groupings of
// proposal fields and the fixed dependency graph between them. The one
// static field table here is consumed by both the approval filter and
// the application orchestrator, so the two can never disagree about
// which block a field belongs to.
package blocks

// Block identifies one approvable/appliable grouping of fields.
type Block string

const (
	// BlockEvent groups fields of the top-level event row.
	BlockEvent Block = "event"
	// BlockEdition groups fields of the edition row. It is also the
	// default bucket: any field not explicitly classified elsewhere
	// belongs here.
	BlockEdition Block = "edition"
	// BlockOrganizer groups the organizer contact fields.
	BlockOrganizer Block = "organizer"
	// BlockRaces groups the race sub-collection.
	BlockRaces Block = "races"
)

// order is the fixed visiting order for the dependency sort.
var order = []Block{BlockEvent, BlockEdition, BlockOrganizer, BlockRaces}

// dependencies is the fixed, acyclic dependency graph: a block may only
// be applied after the blocks it depends on.
var dependencies = map[Block][]Block{
	BlockEvent:     {},
	BlockEdition:   {BlockEvent},
	BlockOrganizer: {BlockEdition},
	BlockRaces:     {BlockEdition},
}

// fieldBlocks is the static field classification table. Edition fields
// are intentionally absent: BlockEdition is the default bucket.
var fieldBlocks = map[string]Block{
	// Event fields
	"name":      BlockEvent,
	"city":      BlockEvent,
	"country":   BlockEvent,
	"website":   BlockEvent,
	"latitude":  BlockEvent,
	"longitude": BlockEvent,

	// Organizer fields
	"organizer_name":    BlockOrganizer,
	"organizer_email":   BlockOrganizer,
	"organizer_phone":   BlockOrganizer,
	"organizer_website": BlockOrganizer,

	// Race sub-collection
	"races": BlockRaces,
}

// Classify assigns a changed field to its block. Fields not listed in
// the static table fall into BlockEdition.
func Classify(field string) Block {
	if b, ok := fieldBlocks[field]; ok {
		return b
	}
	return BlockEdition
}

// Fields returns the fields statically assigned to a block. For
// BlockEdition this returns nil: edition membership is the absence of
// another assignment, not a list.
func Fields(b Block) []string {
	var out []string
	for field, block := range fieldBlocks {
		if block == b {
			out = append(out, field)
		}
	}
	return out
}

// DependsOn returns the blocks that must be applied before b.
func DependsOn(b Block) []Block {
	return dependencies[b]
}

// Tagged is a sortable work item carrying an optional block tag. An
// empty Block means the entry is untagged and sorts after everything
// else, in input order.
type Tagged struct {
	Block   Block
	Payload any
}

// Sort orders tagged entries so every block follows its dependencies.
// Blocks are visited depth-first in the fixed order event, edition,
// organizer, races; a dependency is visited first only when it is
// present in the input (missing dependencies are never synthesized).
// Duplicate entries for one block collapse to the first occurrence.
// Sorting is idempotent: an already sorted input comes back unchanged.
func Sort(in []Tagged) []Tagged {
	first := make(map[Block]Tagged, len(in))
	for _, entry := range in {
		if entry.Block == "" {
			continue
		}
		if _, seen := first[entry.Block]; !seen {
			first[entry.Block] = entry
		}
	}

	visited := make(map[Block]bool, len(first))
	out := make([]Tagged, 0, len(in))

	var visit func(b Block)
	visit = func(b Block) {
		if visited[b] {
			return
		}
		entry, present := first[b]
		if !present {
			return
		}
		visited[b] = true
		for _, dep := range dependencies[b] {
			visit(dep)
		}
		out = append(out, entry)
	}

	for _, b := range order {
		visit(b)
	}

	// Untagged entries keep their relative input order at the end.
	for _, entry := range in {
		if entry.Block == "" {
			out = append(out, entry)
		}
	}

	return out
}
