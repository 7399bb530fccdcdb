package datagen

// Kind identifies one of the four entity collections.
type Kind int

const (
	KindUser Kind = iota
	KindAddress
	KindProvider
	KindTransaction
)

// Kinds lists every kind in generation order.
var Kinds = []Kind{KindUser, KindAddress, KindProvider, KindTransaction}

// String returns the plural entity name, which is also the output file stem.
func (k Kind) String() string {
	switch k {
	case KindUser:
		return "users"
	case KindAddress:
		return "addresses"
	case KindProvider:
		return "providers"
	case KindTransaction:
		return "transactions"
	default:
		return "unknown"
	}
}

// User is a person owning one address and any number of transactions.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Address belongs to exactly one user.
type Address struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

// PaymentProvider is a payment brand referenced by transactions.
type PaymentProvider struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Transaction charges Amount to a user through a provider.
type Transaction struct {
	ID         int64   `json:"id"`
	UserID     int64   `json:"user_id"`
	ProviderID int64   `json:"provider_id"`
	Amount     float64 `json:"amount"`
	Timestamp  string  `json:"timestamp"`
}
