package conf

var (
	BuiltAt   string
	GoVersion string
	GitAuthor string
	GitCommit string
	Version   string = "dev"
)

var Conf *Config
