package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/aretw0/lendflow/pkg/rules"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the underwriting rule configuration",
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active rule configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := activeRules(cmd)
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a rule configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := rules.LoadConfig(args[0])
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rule configuration %q is valid.\n", cfg.Version)
		return nil
	},
}

var rulesEMICmd = &cobra.Command{
	Use:   "emi <principal> [tenure-months]",
	Short: "Print the EMI and the first installments of a loan",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := activeRules(cmd)
		if err != nil {
			return err
		}
		principal, err := strconv.ParseFloat(args[0], 64)
		if err != nil || principal <= 0 {
			return fmt.Errorf("invalid principal %q", args[0])
		}
		months := cfg.Sanction.TenureMonths
		if len(args) == 2 {
			months, err = strconv.Atoi(args[1])
			if err != nil || months <= 0 {
				return fmt.Errorf("invalid tenure %q", args[1])
			}
		}
		rate := cfg.Sanction.InterestRate
		if cmd.Flags().Changed("rate") {
			rate, _ = cmd.Flags().GetFloat64("rate")
		}
		rows, _ := cmd.Flags().GetInt("rows")

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "EMI: %.2f over %d months at %.2f%%\n\n", rules.RoundMoney(rules.EMI(principal, rate, months)), months, rate)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Month\tPayment\tPrincipal\tInterest\tBalance\t")
		for _, in := range rules.AmortizationSchedule(principal, rate, months, rows) {
			fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\t%.2f\t\n", in.Month, in.Payment, in.Principal, in.Interest, in.Balance)
		}
		return tw.Flush()
	},
}

func activeRules(cmd *cobra.Command) (rules.Config, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return rules.Config{}, err
	}
	return rules.LoadConfig(cfg.RulesPath)
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesEMICmd)

	rulesEMICmd.Flags().Float64("rate", 0, "Annual interest rate in percent; defaults to the sanction policy")
	rulesEMICmd.Flags().Int("rows", 12, "Installments to print; 0 prints the full schedule")
}
