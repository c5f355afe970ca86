package str

import "strings"

// ToScreamingSnakeCase transforms a given string into screaming snake case format
func ToScreamingSnakeCase(in string) string {
	return toSnake(in, true)
}

// ToSnakeCase transforms a given string into lower snake case, as prometheus names expect
func ToSnakeCase(in string) string {
	return toSnake(in, false)
}

func toSnake(in string, upper bool) string {
	in = strings.TrimSpace(in)
	if len(in) == 0 {
		return in
	}

	sb := strings.Builder{}
	sb.Grow(len(in) + len(in)/3)

	var last byte
	for i, b := range []byte(in) {
		shouldWrite := true
		needsSeparator := false

		switch {
		case 'a' <= b && b <= 'z':
			if upper {
				b -= 'a' - 'A'
			}
		case 'A' <= b && b <= 'Z':
			needsSeparator = true
			if !upper {
				b += 'a' - 'A'
			}
		case b == '_' || b == '-' || b == '.' || b == ' ':
			shouldWrite = false
			needsSeparator = true
		case '0' <= b && b <= '9':
			needsSeparator = true
		}

		if i > 0 && needsSeparator && last != '_' {
			sb.WriteByte('_')
			last = '_'
		}

		if shouldWrite {
			sb.WriteByte(b)
			last = b
		}
	}

	return sb.String()
}
