package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openwyrm/wyrm/config"
)

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <lat> <lon>",
		Short: "Print every feature whose bounding box covers a WGS-84 position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runQuery(cfg, lat, lon)
		},
	}
}

func runQuery(cfg config.Config, lat, lon float64) error {
	wyrm, closeFn, err := buildWyrm(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	matches, err := wyrm.QueryFeatures(context.Background(), lat, lon)
	if err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Printf("%s/%s:", m.Group, m.Layer)
		for _, p := range m.Props {
			fmt.Printf(" %s=%s", p.Tag, p.Value)
		}
		fmt.Println()
	}
	return nil
}
