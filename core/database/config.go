package database

// Config selects and addresses the registry database.
type Config struct {
	// Driver is mysql for deployed registries or sqlite for local runs.
	Driver   string `mapstructure:"driver" default:"mysql"`
	Host     string `mapstructure:"host" default:"localhost"`
	Port     int    `mapstructure:"port" default:"3306"`
	User     string `mapstructure:"user" default:"root"`
	Password string `mapstructure:"password" default:""`
	// Name is the schema name, or the file path (":memory:" included) for sqlite.
	Name string `mapstructure:"name" default:"registry"`
	// TimeoutSeconds bounds connection setup and individual reads and writes.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
