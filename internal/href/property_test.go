package href

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Built addresses always parse back to the same prefix and key.
func TestBuildParseProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	rootNames := []string{EndDeviceRoot, DERRoot, DERProgramRoot, CurveRoot, FSARoot, MirrorRoot}
	roots := gen.IntRange(0, len(rootNames)-1).Map(func(i int) string { return rootNames[i] })

	properties.Property("Build(prefix, key) parses with trailing index key", prop.ForAll(
		func(root string, key int) bool {
			h, err := Parse(Build(root, key))
			if err != nil {
				return false
			}
			last, ok := h.LastIndex()
			return ok && last == key && h.Join(h.Count()-1) == root
		},
		roots,
		gen.IntRange(0, 1<<30),
	))

	properties.Property("Control hrefs round-trip through ParseControl", prop.ForAll(
		func(program, control int) bool {
			p, c, err := ParseControl(Control(program, control))
			return err == nil && p == program && c == control
		},
		gen.IntRange(0, 100000),
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t)
}
