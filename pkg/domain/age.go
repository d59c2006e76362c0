package domain

import "time"

// AgeAt returns the number of full years between birthDate and now.
// The year is only counted once the month/day of the birthday has been reached,
// so a person born on 15 June is still one year younger on 14 June.
// Both instants are compared in UTC.
func AgeAt(birthDate, now time.Time) int {
	birthDate = birthDate.UTC()
	now = now.UTC()

	age := now.Year() - birthDate.Year()
	if now.Month() < birthDate.Month() ||
		(now.Month() == birthDate.Month() && now.Day() < birthDate.Day()) {
		age--
	}
	return age
}
