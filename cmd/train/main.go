package main

import (
	"flag"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/ChenXinhao/fcn/fcn"
	"github.com/ChenXinhao/fcn/params"
	"github.com/ChenXinhao/fcn/pascal"
	"github.com/ChenXinhao/fcn/vgg16"
)

func main() {
	conf := fcn.Default()
	// optional config file as last argument, flags override its settings
	if last := os.Args[len(os.Args)-1]; len(os.Args) > 1 && !strings.HasPrefix(last, "-") {
		var err error
		conf, err = fcn.LoadConfig(last)
		fcn.CheckErr(err)
	}
	var resume, weights, checksum string
	flag.IntVar(&conf.GPU, "gpu", conf.GPU, "GPU device index, -1 for CPU")
	flag.StringVar(&conf.OutDir, "o", conf.OutDir, "output directory")
	flag.StringVar(&resume, "resume", "", "snapshot file to resume from")
	flag.StringVar(&conf.DataDir, "data", conf.DataDir, "directory with the VOCdevkit tree and model cache")
	flag.StringVar(&weights, "weights", vgg16.DefaultURL, "pretrained weights url, empty to skip")
	flag.StringVar(&checksum, "checksum", vgg16.DefaultSHA256, "pretrained weights sha256")
	flag.StringVar(&conf.Optimizer, "optimizer", conf.Optimizer, "update rule: sgd or adam")
	flag.Float64Var(&conf.Eta, "eta", conf.Eta, "learning rate")
	flag.Float64Var(&conf.Momentum, "momentum", conf.Momentum, "momentum coefficient")
	flag.Float64Var(&conf.Lambda, "lambda", conf.Lambda, "weight decay parameter")
	flag.IntVar(&conf.MaxIter, "iters", conf.MaxIter, "max training iterations")
	flag.IntVar(&conf.MaxEpoch, "epochs", conf.MaxEpoch, "max epochs, overrides iteration based loop if set")
	flag.Int64Var(&conf.RandSeed, "seed", conf.RandSeed, "random number seed")
	flag.IntVar(&conf.DebugLevel, "debug", conf.DebugLevel, "debug logging level")
	flag.Parse()

	rng := fcn.SetSeed(conf.RandSeed)
	data, err := pascal.New(path.Join(conf.DataDir, "VOCdevkit", "VOC2012"))
	fcn.CheckErr(err)
	model := fcn.NewSoftmaxModel(len(data.Classes()), 3, rng)

	if weights != "" {
		file, err := vgg16.Download(path.Join(conf.DataDir, "models"), weights, checksum)
		fcn.CheckErr(err)
		pre, err := vgg16.Load(file)
		fcn.CheckErr(err)
		n := params.Transfer(pre, model.Params())
		fmt.Printf("loaded pretrained model: copied %d parameter tensors\n", n)
	}

	opt, err := conf.NewOptimizer()
	fcn.CheckErr(err)
	trainer, err := fcn.NewTrainer(conf, model, opt, data, resume)
	fcn.CheckErr(err)
	defer trainer.Close()
	trainer.AddReporter(fcn.LogReporter{Every: conf.LogEvery})

	fmt.Println(conf)
	fcn.CheckErr(trainer.Run())
}
