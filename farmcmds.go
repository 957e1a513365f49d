package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"github.com/umi-digital/umi-farmd/internal/lib/misc"
)

func GetFarmCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "farm",
		Aliases: []string{"f"},
		Usage:   "Operate the token staking ledger",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List known tokens with their totals",
				Action:  FarmList,
			},
			{
				Name:   "positions",
				Usage:  "List open positions for an account",
				Action: FarmPositions,
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:     "account",
						Usage:    "The account whose positions to show",
						Required: true,
					},
				},
			},
			{
				Name:   "fund",
				Usage:  "Add reward funding for a token",
				Action: FarmFund,
				Flags:  []cli.Flag{tokenFlag(), amountFlag("The amount to add to the reward reserve")},
			},
			{
				Name:   "apy",
				Usage:  "Set the APY for a token (percent, whole number)",
				Action: FarmSetAPY,
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.IntFlag{
						Name:     "percent",
						Usage:    "New APY in percent",
						Required: true,
					},
				},
			},
			{
				Name:    "stake",
				Aliases: []string{"s"},
				Usage:   "Open a new stake position",
				Action:  FarmStake,
				Flags:   []cli.Flag{tokenFlag(), amountFlag("The amount to stake")},
			},
			{
				Name:   "unstake",
				Usage:  "Withdraw from a position, all of it when no amount given",
				Action: FarmUnstake,
				Flags: []cli.Flag{
					tokenFlag(),
					stakeIDFlag(),
					&cli.StringFlag{
						Name:  "amount",
						Usage: "Partial amount to withdraw, leave unset for the whole position",
					},
				},
			},
			{
				Name:   "claim",
				Usage:  "Pay out accrued interest on a position, restarting its clock",
				Action: FarmClaim,
				Flags:  []cli.Flag{tokenFlag(), stakeIDFlag()},
			},
			{
				Name:   "pause",
				Usage:  "Pause staking operations",
				Action: FarmPause,
			},
			{
				Name:   "unpause",
				Usage:  "Resume staking operations",
				Action: FarmUnpause,
			},
		},
	}
}

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "token",
		Usage:    "The token id",
		Aliases:  []string{"t"},
		Required: true,
	}
}

func amountFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:     "amount",
		Usage:    usage,
		Aliases:  []string{"a"},
		Required: true,
	}
}

func stakeIDFlag() cli.Flag {
	return &cli.UintFlag{
		Name:     "id",
		Usage:    "The stake id (1 is the account's first position)",
		Required: true,
	}
}

func FarmList(ctx context.Context, command *cli.Command) error {
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Token\tAPY\tTotal Staked\tFunding\tOpen Positions\t")
	for _, id := range App.engine.farm.Tokens() {
		fmt.Fprintf(tw, "%s\t%d%%\t%s\t%s\t%d\t\n", id,
			App.engine.farm.APY(id),
			App.engine.farm.TotalStaked(id).String(),
			App.engine.farm.TotalFunding(id).String(),
			App.engine.farm.OpenPositions(id))
	}
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

func FarmPositions(ctx context.Context, command *cli.Command) error {
	token := command.String("token")
	account := command.String("account")
	last := App.engine.farm.LastStakeID(token, account)
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Stake ID\tPrincipal\tOpened At\t")
	for id := uint64(1); id <= last; id++ {
		if App.engine.farm.StakeDate(token, account, id) == 0 {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t\n", id,
			App.engine.farm.Balance(token, account, id).String(),
			App.engine.farm.StakeDate(token, account, id))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t\t\n", App.engine.farm.TotalBalanceOf(token, account).String())
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

func FarmFund(ctx context.Context, command *cli.Command) error {
	amount, err := decimal.NewFromString(command.String("amount"))
	if err != nil {
		return err
	}
	caller := App.caller(command)
	if err := App.engine.farm.Fund(caller, command.String("token"), amount); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}

func FarmSetAPY(ctx context.Context, command *cli.Command) error {
	caller := App.caller(command)
	if err := App.engine.farm.SetAPY(caller, command.String("token"), command.Int("percent")); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}

func FarmStake(ctx context.Context, command *cli.Command) error {
	amount, err := decimal.NewFromString(command.String("amount"))
	if err != nil {
		return err
	}
	caller := App.caller(command)
	stakeID, err := App.engine.farm.Stake(caller, command.String("token"), amount)
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "staked %s as stake id:%d", amount.String(), stakeID)
	return App.engine.persist(ctx)
}

func FarmUnstake(ctx context.Context, command *cli.Command) error {
	var (
		caller  = App.caller(command)
		token   = command.String("token")
		stakeID = command.Uint("id")
		paid    decimal.Decimal
		err     error
	)
	if raw := command.String("amount"); raw != "" {
		var amount decimal.Decimal
		if amount, err = decimal.NewFromString(raw); err != nil {
			return err
		}
		paid, err = App.engine.farm.UnstakeAmount(caller, token, stakeID, amount)
	} else {
		// withdrawing everything closes the position, make sure they mean it
		if _, perr := (&promptui.Prompt{
			Label:     fmt.Sprintf("Withdraw the ENTIRE position %d and close it", stakeID),
			IsConfirm: true,
		}).Run(); perr != nil {
			return nil
		}
		paid, err = App.engine.farm.Unstake(caller, token, stakeID)
	}
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "unstaked, paid out:%s", paid.String())
	return App.engine.persist(ctx)
}

func FarmClaim(ctx context.Context, command *cli.Command) error {
	caller := App.caller(command)
	paid, err := App.engine.farm.Claim(caller, command.String("token"), command.Uint("id"))
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "claimed interest:%s", paid.String())
	return App.engine.persist(ctx)
}

func FarmPause(ctx context.Context, command *cli.Command) error {
	if err := App.engine.farm.Pause(App.caller(command)); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}

func FarmUnpause(ctx context.Context, command *cli.Command) error {
	if err := App.engine.farm.Unpause(App.caller(command)); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}
