//go:build !(rp2040 || rp2350)

package main

import (
	"encoding/json"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"firmatadht-go/services/config"
	"firmatadht-go/x/logx"
)

const device = "sim"

type rootOptions struct {
	v   *viper.Viper
	log logr.Logger
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{v: viper.New()}
	cmd := &cobra.Command{
		Use:           "dhtsim",
		Short:         "Host-side DHT Firmata node and link monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			o.log = logx.Stderr(o.v.GetInt("verbose"))
			return o.loadConfig()
		},
	}
	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (json, yaml or toml) overlaying the embedded defaults")
	pf.CountP("verbose", "v", "log verbosity (repeat for more)")
	_ = o.v.BindPFlags(pf)
	o.v.SetEnvPrefix("DHTSIM")
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()

	cmd.AddCommand(newRunCmd(o), newFrameCmd(o), newDecodeCmd(o))
	return cmd
}

// loadConfig registers the file named by --config as the device config. Top
// level keys replace the embedded ones.
func (o *rootOptions) loadConfig() error {
	path := o.v.GetString("config")
	if path == "" {
		return nil
	}
	fv := viper.New()
	fv.SetConfigFile(path)
	if err := fv.ReadInConfig(); err != nil {
		return err
	}
	merged := map[string]any{}
	if raw, ok := config.Lookup(device); ok {
		if err := json.Unmarshal(raw, &merged); err != nil {
			return err
		}
	}
	for k, v := range fv.AllSettings() {
		merged[k] = v
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	config.Register(device, b)
	o.log.Info("config loaded", "file", path, "keys", len(merged))
	return nil
}
