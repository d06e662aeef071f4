package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	engine "github.com/icyseptember2237/scriptengine"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := flag.String("root", ".", "directory holding the Scripts tree")
	entry := flag.String("entry", "/Scripts/main.ts", "entry script")
	engineType := flag.String("engine", "", "evaluator backend (goja or js)")
	call := flag.String("call", "", "exported function to call after loading")
	flag.Parse()

	cfg, err := engine.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *engineType != "" && *engineType != cfg.Engine {
		cfg.Engine = *engineType
		if cfg.Engine == engine.TypeEngineJs && os.Getenv("SCRIPT_TARGET") == "" {
			cfg.Target = "es5"
		}
	}

	s, err := engine.NewSession(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer s.Close()
	log := s.Logger()

	files, err := s.RegisterTree(*entry, engine.FSProvider{FS: os.DirFS(*root)})
	if err != nil {
		log.Error("register sources", zap.Error(err))
		return 1
	}
	log.Info("registered sources", zap.Strings("files", files))

	for _, d := range s.Compile() {
		log.Warn(d.String())
	}

	exports, err := s.Load(*entry)
	if err != nil {
		log.Error("load entry", zap.Error(err))
		return 1
	}
	keys := exports.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Println(k)
	}

	if *call != "" {
		out, err := s.Invoke(*entry, *call)
		if err != nil {
			log.Error("call", zap.String("fn", *call), zap.Error(err))
			return 1
		}
		fmt.Printf("%s() = %v\n", *call, out.Export())
	}
	return 0
}
