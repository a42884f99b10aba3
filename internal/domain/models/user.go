package models

// User представляет покупателя или продавца
type User struct {
	ID       int64
	Email    string
	PassHash []byte
	IsSeller bool
}
