package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"nickel-watch/internal/app"
)

var (
	simulateCode     string
	simulateOpen     float64
	simulatePrevious float64
	simulateLast     float64
	simulatePrevOI   float64
	simulateOI       float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟两轮行情并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOpen <= 0 || simulatePrevious <= 0 || simulateLast <= 0 {
			return errors.New("--open、--prev 与 --last 必须大于 0")
		}
		if simulatePrevOI < 0 || simulateOI < 0 {
			return errors.New("--prev-oi 与 --oi 不能为负")
		}
		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Code:       simulateCode,
			Open:       decimal.NewFromFloat(simulateOpen),
			Previous:   decimal.NewFromFloat(simulatePrevious),
			Last:       decimal.NewFromFloat(simulateLast),
			PreviousOI: decimal.NewFromFloat(simulatePrevOI),
			OI:         decimal.NewFromFloat(simulateOI),
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateCode, "code", "", "合约代码，默认第一个监控合约")
	simulateCmd.Flags().Float64Var(&simulateOpen, "open", 0, "开盘价")
	simulateCmd.Flags().Float64Var(&simulatePrevious, "prev", 0, "上一轮最新价")
	simulateCmd.Flags().Float64Var(&simulateLast, "last", 0, "本轮最新价")
	simulateCmd.Flags().Float64Var(&simulatePrevOI, "prev-oi", 0, "上一轮持仓量")
	simulateCmd.Flags().Float64Var(&simulateOI, "oi", 0, "本轮持仓量")
}
