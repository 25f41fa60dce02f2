package graph

// SetKeyFieldsForTest lets external tests build a SubGraph with fixed
// @key fields without going through SDL parsing.
func SetKeyFieldsForTest(sg *SubGraph, keyFields map[string][]string) {
	sg.keyFields = keyFields
}
