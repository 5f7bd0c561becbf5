package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "stepflow",
	Short: "A local Amazon States Language interpreter and mock/test harness",
	Long: `stepflow runs AWS Step Functions state machines entirely locally,
against mock task responses, for fast deterministic testing.

Examples:
  stepflow run statemachine.json --mock mocks.yaml --input input.json
  stepflow validate statemachine.json --mock mocks.yaml
  stepflow generate statemachine.json --prompt "generate happy-path mocks" --command ./llm.sh`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stepflow.yaml)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
	viper.BindPFlag("output.json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".stepflow")
		}
	}

	viper.SetEnvPrefix("STEPFLOW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !outputJSON {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}
