package registry

// Queries holds the named statements the registry issues. Swapping them
// lets the registry run against any SQL dialect the gateway speaks.
type Queries struct {
	SelectAll    string // → name, url, status, date
	Insert       string // (name, url, status)
	UpdateStatus string // (status, url)
	Delete       string // (url)
}

// DefaultQueries returns the PostgreSQL statements for the service table.
func DefaultQueries() Queries {
	return Queries{
		SelectAll:    "SELECT name, url, status, date FROM service ORDER BY date, url",
		Insert:       "INSERT INTO service (name, url, status, date) VALUES ($1, $2, $3, now())",
		UpdateStatus: "UPDATE service SET status = $1 WHERE url = $2",
		Delete:       "DELETE FROM service WHERE url = $1",
	}
}
