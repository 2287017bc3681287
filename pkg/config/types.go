package config

// Settings is the validated runtime configuration handed to the server.
// It is treated as read-only while the server is serving traffic; the API
// key is the only field mutated (once, before the tunnel starts) when
// remote access needs a generated key.
type Settings struct {
	PrinterName  string
	Port         int
	UseTunnel    bool
	APIKey       string
	PrintScaling string
	PrintColor   string
	PrintDuplex  string
	Debug        bool
}

type Config struct {
	Printer struct {
		Name string `ini:"name"`
	} `ini:"printer"`
	Server struct {
		Port      int    `ini:"port"`
		UseTunnel bool   `ini:"use_tunnel"`
		APIKey    string `ini:"api_key"`
	} `ini:"server"`
	Print struct {
		Scaling string `ini:"scaling"`
		Color   string `ini:"color"`
		Duplex  string `ini:"duplex"`
	} `ini:"print"`
	Logging struct {
		Debug bool `ini:"debug"`
	} `ini:"logging"`
}
