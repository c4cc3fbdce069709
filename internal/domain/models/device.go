package models

// Device is a vending machine registered under the storefront account.
type Device struct {
	ID      int64  `json:"id"`
	Machid  string `json:"machid"`
	Name    string `json:"name"`
	Address string `json:"address"`
}
