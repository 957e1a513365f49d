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

func GetBoostCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "boost",
		Aliases: []string{"b"},
		Usage:   "Operate the NFT-boosted staking ledger",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show an account's boosted balance, APY and held NFT categories",
				Action: BoostShow,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "account",
						Usage:    "The account to show",
						Required: true,
					},
				},
			},
			{
				Name:   "fund",
				Usage:  "Add reward token funding",
				Action: BoostFund,
				Flags:  []cli.Flag{amountFlag("The amount to add to the reward reserve")},
			},
			{
				Name:   "apy",
				Usage:  "Set the base APY (percent, whole number)",
				Action: BoostSetAPY,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "percent",
						Usage:    "New base APY in percent",
						Required: true,
					},
				},
			},
			{
				Name:   "bonus",
				Usage:  "Set the APY bonus for an NFT category (whitelists it)",
				Action: BoostSetBonus,
				Flags: []cli.Flag{
					categoryFlag(),
					&cli.IntFlag{
						Name:     "percent",
						Usage:    "Bonus percent per held NFT",
						Required: true,
					},
				},
			},
			{
				Name:    "stake",
				Aliases: []string{"s"},
				Usage:   "Add to the boosted balance, settling accrued interest first",
				Action:  BoostStake,
				Flags:   []cli.Flag{amountFlag("The amount to stake")},
			},
			{
				Name:   "unstake",
				Usage:  "Withdraw the entire boosted balance plus accrued interest",
				Action: BoostUnstake,
			},
			{
				Name:   "claim",
				Usage:  "Pay out accrued interest, restarting the clock",
				Action: BoostClaim,
			},
			{
				Name:   "stake-nft",
				Usage:  "Stake NFTs from whitelisted categories to raise the APY",
				Action: BoostStakeNFT,
				Flags:  []cli.Flag{categoryFlag(), quantityFlag()},
			},
			{
				Name:   "unstake-nft",
				Usage:  "Return staked NFTs, lowering the APY",
				Action: BoostUnstakeNFT,
				Flags:  []cli.Flag{categoryFlag(), quantityFlag()},
			},
			{
				Name:   "pause",
				Usage:  "Pause boosted staking operations",
				Action: BoostPause,
			},
			{
				Name:   "unpause",
				Usage:  "Resume boosted staking operations",
				Action: BoostUnpause,
			},
		},
	}
}

func categoryFlag() cli.Flag {
	return &cli.UintFlag{
		Name:     "category",
		Usage:    "The NFT category id",
		Required: true,
	}
}

func quantityFlag() cli.Flag {
	return &cli.UintFlag{
		Name:     "quantity",
		Usage:    "How many NFTs of the category",
		Value:    1,
		Required: false,
	}
}

func BoostShow(ctx context.Context, command *cli.Command) error {
	account := command.String("account")
	boosted := App.engine.boosted
	fmt.Printf("Balance:    %s\n", boosted.Balance(account).String())
	fmt.Printf("Staked at:  %d\n", boosted.StakeDate(account))
	fmt.Printf("Total APY:  %d%%\n", boosted.TotalAPYOf(account))
	fmt.Printf("Funding by: %s\n", boosted.FundingBy(account).String())
	ids := boosted.NFTIDs(account)
	if len(ids) == 0 {
		return nil
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Category\tQuantity\tBonus\t")
	for _, id := range ids {
		fmt.Fprintf(tw, "%d\t%d\t%d%%\t\n", id, boosted.NFTBalance(account, id), boosted.Bonus(id))
	}
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

func BoostFund(ctx context.Context, command *cli.Command) error {
	amount, err := decimal.NewFromString(command.String("amount"))
	if err != nil {
		return err
	}
	if err := App.engine.boosted.Fund(App.caller(command), amount); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}

func BoostSetAPY(ctx context.Context, command *cli.Command) error {
	if err := App.engine.boosted.SetBaseAPY(App.caller(command), command.Int("percent")); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}

func BoostSetBonus(ctx context.Context, command *cli.Command) error {
	if err := App.engine.boosted.SetBonus(App.caller(command), command.Uint("category"), command.Int("percent")); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}

func BoostStake(ctx context.Context, command *cli.Command) error {
	amount, err := decimal.NewFromString(command.String("amount"))
	if err != nil {
		return err
	}
	caller := App.caller(command)
	if err := App.engine.boosted.Stake(caller, amount); err != nil {
		return err
	}
	misc.Infof(App.logger, "boosted balance now:%s", App.engine.boosted.Balance(caller).String())
	return App.engine.persist(ctx)
}

func BoostUnstake(ctx context.Context, command *cli.Command) error {
	caller := App.caller(command)
	// withdrawing clears the whole balance, make sure they mean it
	if _, perr := (&promptui.Prompt{
		Label:     fmt.Sprintf("Withdraw the ENTIRE boosted balance for %s", caller),
		IsConfirm: true,
	}).Run(); perr != nil {
		return nil
	}
	paid, err := App.engine.boosted.Unstake(caller)
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "unstaked, paid out:%s", paid.String())
	return App.engine.persist(ctx)
}

func BoostClaim(ctx context.Context, command *cli.Command) error {
	paid, err := App.engine.boosted.Claim(App.caller(command))
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "claimed interest:%s", paid.String())
	return App.engine.persist(ctx)
}

func BoostStakeNFT(ctx context.Context, command *cli.Command) error {
	caller := App.caller(command)
	if err := App.engine.boosted.StakeNFT(caller, command.Uint("category"), command.Uint("quantity")); err != nil {
		return err
	}
	misc.Infof(App.logger, "total APY now:%d%%", App.engine.boosted.TotalAPYOf(caller))
	return App.engine.persist(ctx)
}

func BoostUnstakeNFT(ctx context.Context, command *cli.Command) error {
	caller := App.caller(command)
	if err := App.engine.boosted.UnstakeNFT(caller, command.Uint("category"), command.Uint("quantity")); err != nil {
		return err
	}
	misc.Infof(App.logger, "total APY now:%d%%", App.engine.boosted.TotalAPYOf(caller))
	return App.engine.persist(ctx)
}

func BoostPause(ctx context.Context, command *cli.Command) error {
	if err := App.engine.boosted.Pause(App.caller(command)); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}

func BoostUnpause(ctx context.Context, command *cli.Command) error {
	if err := App.engine.boosted.Unpause(App.caller(command)); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}
