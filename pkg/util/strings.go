package util

func StringPointer(s string) *string {
	return &s
}

// StringValue dereferences s, treating nil as the empty string
func StringValue(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
