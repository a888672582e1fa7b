package models

// CryptoProof is a proof-of-payment submission. It lives only in memory for one send.
type CryptoProof struct {
	CustomerName  string
	CustomerEmail string
	ProductName   string
	ProductPrice  string
	Filename      string
	Content       []byte
}
