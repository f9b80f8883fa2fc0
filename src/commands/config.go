package commands

import (
	"fmt"
	"io"

	"Backend-Volunteer-Hours/src/models"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change client settings",
	}
	cmd.AddCommand(newConfigShowCmd(flags), newConfigSetCmd(flags))
	return cmd
}

func newConfigShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print connection and auto-checkout settings",
		RunE: withRuntime(flags, func(cmd *cobra.Command, args []string, rt *runtime) error {
			cfg, err := rt.store.Config(cmd.Context())
			if err != nil {
				return err
			}
			return printSettings(cmd.OutOrStdout(), rt.settings, cfg)
		}),
	}
}

func newConfigSetCmd(flags *globalFlags) *cobra.Command {
	var (
		settingsPatch Settings
		enabled       bool
		delay         int
		maxHours      int
		confirm       bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings; only the given flags are updated",
		Example: `  volunteer config set --token "$TOKEN" --base-url https://hours.example.org
  volunteer config set --auto-checkout=false
  volunteer config set --delay 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := LoadSettings(flags.configPath)
			if err != nil {
				return err
			}
			changed := cmd.Flags().Changed
			if changed("base-url") {
				settings.BaseURL = settingsPatch.BaseURL
			}
			if changed("token") {
				settings.Token = settingsPatch.Token
			}
			if changed("timezone") {
				settings.Timezone = settingsPatch.Timezone
			}
			if changed("store") {
				settings.StorePath = settingsPatch.StorePath
			}
			if changed("redis") {
				settings.RedisAddr = settingsPatch.RedisAddr
			}
			if err := SaveSettings(flags.configPath, settings); err != nil {
				return err
			}

			var patch models.AutoCheckoutConfigPatch
			if changed("auto-checkout") {
				patch.Enabled = &enabled
			}
			if changed("delay") {
				patch.DelaySeconds = &delay
			}
			if changed("max-hours") {
				patch.MaxWorkHours = &maxHours
			}
			if changed("confirm") {
				patch.ShowConfirmation = &confirm
			}

			return withRuntime(flags, func(cmd *cobra.Command, args []string, rt *runtime) error {
				cfg, err := rt.store.UpdateConfig(cmd.Context(), patch)
				if err != nil {
					return err
				}
				return printSettings(cmd.OutOrStdout(), rt.settings, cfg)
			})(cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&settingsPatch.BaseURL, "base-url", "", "hour-record service URL")
	f.StringVar(&settingsPatch.Token, "token", "", "operator JWT")
	f.StringVar(&settingsPatch.Timezone, "timezone", "", "IANA zone used to read the clock, or Local")
	f.StringVar(&settingsPatch.StorePath, "store", "", "sqlite state file")
	f.StringVar(&settingsPatch.RedisAddr, "redis", "", "redis host:port; replaces the sqlite store")
	f.BoolVar(&enabled, "auto-checkout", true, "check out automatically when the app is backgrounded")
	f.IntVar(&delay, "delay", 5, "seconds in background before auto checkout")
	f.IntVar(&maxHours, "max-hours", 24, "report restored sessions older than this as overdue")
	f.BoolVar(&confirm, "confirm", false, "ask before auto checkout")
	return cmd
}

func printSettings(out io.Writer, s Settings, cfg models.AutoCheckoutConfig) error {
	if s.Token != "" {
		s.Token = "****"
	}
	doc := struct {
		Settings     `yaml:",inline"`
		AutoCheckout models.AutoCheckoutConfig `yaml:"autoCheckout"`
	}{s, cfg}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, string(data))
	return err
}
