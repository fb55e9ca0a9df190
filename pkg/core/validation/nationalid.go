package validation

// ValidNationalID reports whether id passes the nine-digit national id check
// digit algorithm. Shorter ids are treated as left-padded with zeros.
func ValidNationalID(id int) bool {
	if id <= 0 || id > 999_999_999 {
		return false
	}

	sum := 0
	for i := 8; i >= 0; i-- {
		digit := id % 10
		id /= 10

		weighted := digit * (i%2 + 1)
		if weighted > 9 {
			weighted -= 9
		}
		sum += weighted
	}
	return sum%10 == 0
}
