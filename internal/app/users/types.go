package users

import "time"

type RegisterInput struct {
	Key       string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Birthdate time.Time
	Password  string
}
