package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/akmonengine/feathersync/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(outFile); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", outFile)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := config.Save(outFile, cfg); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("wrote " + outFile))
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
