package fcn

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// Training configuration settings
type Config struct {
	DataDir          string
	OutDir           string
	Optimizer        string
	Eta              float64
	Momentum         float64
	Lambda           float64
	MaxIter          int
	MaxEpoch         int
	TestInterval     int
	SnapshotInterval int
	LogEvery         int
	RandSeed         int64
	GPU              int
	DebugLevel       int
}

// Default returns the reference FCN training schedule: momentum SGD with a
// tiny learning rate and unnormalised per pixel loss, validation every 1000
// iterations and a snapshot every 4000.
func Default() Config {
	return Config{
		DataDir:          "data",
		OutDir:           "result",
		Optimizer:        "sgd",
		Eta:              1e-10,
		Momentum:         0.99,
		Lambda:           0.0005,
		MaxIter:          100000,
		TestInterval:     1000,
		SnapshotInterval: 4000,
		LogEvery:         1,
		GPU:              -1,
	}
}

// Load config from json file
func LoadConfig(filePath string) (c Config, err error) {
	var f *os.File
	if f, err = os.Open(filePath); err != nil {
		return
	}
	defer f.Close()
	fmt.Println("loading config from", filePath)
	c = Default()
	err = json.NewDecoder(f).Decode(&c)
	return
}

// Save config to JSON file
func (c Config) Save(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// NewOptimizer creates the update rule selected by the Optimizer setting.
func (c Config) NewOptimizer() (Optimizer, error) {
	switch c.Optimizer {
	case "sgd":
		return NewMomentumSGD(c.Eta, c.Momentum), nil
	case "adam":
		return NewAdam(c.Eta), nil
	}
	return nil, fmt.Errorf("unknown optimizer: %q", c.Optimizer)
}

func (c Config) Fields() []string {
	st := reflect.TypeOf(c)
	fld := make([]string, st.NumField())
	for i := range fld {
		fld[i] = st.Field(i).Name
	}
	return fld
}

func (c Config) Get(key string) interface{} {
	s := reflect.ValueOf(c)
	return s.FieldByName(key).Interface()
}

func (c Config) String() string {
	str := []string{"== Config =="}
	for _, key := range c.Fields() {
		str = append(str, fmt.Sprintf("%-16s: %v", key, c.Get(key)))
	}
	return strings.Join(str, "\n")
}

func (c Config) SetString(key, val string) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	f := s.FieldByName(key)
	var err error
	switch f.Type().Kind() {
	case reflect.Int, reflect.Int64:
		var x int64
		if x, err = strconv.ParseInt(val, 10, 64); err == nil {
			f.SetInt(x)
		}
	case reflect.Float64:
		var x float64
		if x, err = strconv.ParseFloat(val, 64); err == nil {
			f.SetFloat(x)
		}
	case reflect.String:
		f.SetString(val)
	default:
		return c, fmt.Errorf("invalid type for SetString: %v", f.Type().Kind())
	}
	return c, err
}
