package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
)

func GetConvertCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "convert",
		Aliases: []string{"c"},
		Usage:   "Value an LP token amount against the pool's umi reserve",
		Flags:   []cli.Flag{amountFlag("The LP token amount to value")},
		Action:  ConvertValue,
	}
}

func ConvertValue(ctx context.Context, command *cli.Command) error {
	amount, err := decimal.NewFromString(command.String("amount"))
	if err != nil {
		return err
	}
	value, err := App.engine.converter.Value(amount)
	if err != nil {
		return err
	}
	fmt.Println(value.String())
	return nil
}
