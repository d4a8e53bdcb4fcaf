package seed

// File is the flat seed layout:
//
//	services:
//	  - name: Example
//	    url: https://example.com
type File struct {
	Services []Entry `yaml:"services"`
}

// Entry is one service to register at startup.
type Entry struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// HomepageConfig is the Homepage dashboard services.yaml layout. Homepage
// uses dynamic keys: groups hold lists of single-key service maps.
type HomepageConfig []map[string][]map[string]HomepageService

// HomepageService keeps the Homepage properties heartbeat reads.
type HomepageService struct {
	Href        string `yaml:"href"`
	SiteMonitor string `yaml:"siteMonitor,omitempty"`
}
