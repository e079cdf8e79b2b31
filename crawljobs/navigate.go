package crawljobs

// dig walks a chain of map keys in a decoded JSON document, returning
// false as soon as any step isn't a map or the key is absent. This is
// the primary-path navigator; any exception in the primary path is
// the job's signal to fall back to the bounded-depth recursive walk.
func dig(v interface{}, keys ...string) (interface{}, bool) {
	cur := v
	for _, k := range keys {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}
