package domain

import "time"

// Service is one monitored HTTP endpoint.
//
// A Service is uniquely identified by its URL.
type Service struct {
	// Name is the display label chosen at registration.
	Name string `json:"name"`

	// URL is the probe target and the natural key.
	URL string `json:"url"`

	// Status is the outcome of the most recent persisted probe.
	Status Status `json:"status"`

	// Date is the insertion time. Probes do not move it.
	Date time.Time `json:"date"`
}

// NewService returns a service ready for registration.
func NewService(name, url string) *Service {
	return &Service{
		Name:   name,
		URL:    url,
		Status: StatusUnknown,
	}
}
