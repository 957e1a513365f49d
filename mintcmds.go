package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"github.com/umi-digital/umi-farmd/internal/lib/farm"
	"github.com/umi-digital/umi-farmd/internal/lib/misc"
)

func GetMintCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "mint",
		Aliases: []string{"m"},
		Usage:   "Issue new NFT categories against the flat minting fee",
		Commands: []*cli.Command{
			{
				Name:   "new",
				Usage:  "Mint a new NFT category, splitting the fee across recipients",
				Action: MintNew,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "to",
						Usage: "Account receiving the minted NFTs (defaults to the caller)",
					},
					quantityFlag(),
					&cli.StringSliceFlag{
						Name:     "fee",
						Usage:    "Fee recipient as account:percent, repeatable",
						Required: true,
					},
				},
			},
			{
				Name:   "info",
				Usage:  "Show a minted category's supply, creator and uri",
				Action: MintInfo,
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:     "id",
						Usage:    "The NFT category id",
						Required: true,
					},
				},
			},
			{
				Name:   "fee",
				Usage:  "Show or set the flat minting fee",
				Action: MintFee,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "amount",
						Usage: "New fee amount, omit to just show the current fee",
					},
				},
			},
			{
				Name:   "set-uri",
				Usage:  "Set the metadata uri prefix",
				Action: MintSetURI,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "prefix",
						Usage:    "New uri prefix",
						Required: true,
					},
				},
			},
			{
				Name:   "pause",
				Usage:  "Pause minting",
				Action: MintPause,
			},
			{
				Name:   "unpause",
				Usage:  "Resume minting",
				Action: MintUnpause,
			},
		},
	}
}

func parseFeeShares(raw []string) ([]farm.FeeShare, error) {
	fees := make([]farm.FeeShare, len(raw))
	for i, spec := range raw {
		recipient, pctStr, found := strings.Cut(spec, ":")
		if !found {
			return nil, fmt.Errorf("fee %q must be account:percent", spec)
		}
		pct, err := strconv.ParseInt(pctStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fee %q: %w", spec, err)
		}
		fees[i] = farm.FeeShare{Recipient: recipient, Percent: pct}
	}
	return fees, nil
}

func MintNew(ctx context.Context, command *cli.Command) error {
	fees, err := parseFeeShares(command.StringSlice("fee"))
	if err != nil {
		return err
	}
	caller := App.caller(command)
	to := command.String("to")
	if to == "" {
		to = caller
	}
	id, err := App.engine.minter.Mint(caller, to, fees, command.Uint("quantity"))
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "minted nft id:%d uri:%s", id, App.engine.minter.URI(id))
	return App.engine.persist(ctx)
}

func MintInfo(ctx context.Context, command *cli.Command) error {
	id := command.Uint("id")
	minter := App.engine.minter
	if !minter.Exists(id) {
		return fmt.Errorf("nft id %d was never minted", id)
	}
	supply, creator := minter.NFTInfo(id)
	fmt.Printf("Id:      %d\n", id)
	fmt.Printf("Supply:  %d\n", supply)
	fmt.Printf("Creator: %s\n", creator)
	fmt.Printf("Uri:     %s\n", minter.URI(id))
	return nil
}

func MintFee(ctx context.Context, command *cli.Command) error {
	raw := command.String("amount")
	if raw == "" {
		fmt.Printf("Minting fee: %s\n", App.engine.minter.MintingFee().String())
		return nil
	}
	fee, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	if err := App.engine.minter.AdjustFee(App.caller(command), fee); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}

func MintSetURI(ctx context.Context, command *cli.Command) error {
	if err := App.engine.minter.SetURIPrefix(App.caller(command), command.String("prefix")); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}

func MintPause(ctx context.Context, command *cli.Command) error {
	if err := App.engine.minter.Pause(App.caller(command)); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}

func MintUnpause(ctx context.Context, command *cli.Command) error {
	if err := App.engine.minter.Unpause(App.caller(command)); err != nil {
		return err
	}
	return App.engine.persist(ctx)
}
