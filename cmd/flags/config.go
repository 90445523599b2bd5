package flags

var (
	DataDir  string
	Debug    bool
	Dev      bool
	LogStd   bool
	NoPrefix bool
)
