package main

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/umi-digital/umi-farmd/internal/lib/farm"
	"github.com/umi-digital/umi-farmd/internal/lib/misc"
)

type amountRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type stakeIDRequest struct {
	Caller  string `json:"caller"`
	StakeID uint64 `json:"stake_id"`
	Amount  string `json:"amount,omitempty"` // empty means the whole position
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type percentRequest struct {
	Caller  string `json:"caller"`
	Percent int64  `json:"percent"`
}

type nftBatchRequest struct {
	Caller     string   `json:"caller"`
	Categories []uint64 `json:"categories"`
	Quantities []uint64 `json:"quantities"`
}

func (d *Daemon) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"version":        misc.GetVersionInfo(),
		"paused":         d.engine.farm.Paused(),
		"boosted_paused": d.engine.boosted.Paused(),
		"tokens":         d.engine.farm.Tokens(),
	})
}

func (d *Daemon) getTokens(c echo.Context) error {
	type tokenInfo struct {
		ID           string `json:"id"`
		APY          int64  `json:"apy"`
		TotalStaked  string `json:"total_staked"`
		TotalFunding string `json:"total_funding"`
		Positions    int    `json:"open_positions"`
	}
	var out []tokenInfo
	for _, id := range d.engine.farm.Tokens() {
		out = append(out, tokenInfo{
			ID:           id,
			APY:          d.engine.farm.APY(id),
			TotalStaked:  d.engine.farm.TotalStaked(id).String(),
			TotalFunding: d.engine.farm.TotalFunding(id).String(),
			Positions:    d.engine.farm.OpenPositions(id),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (d *Daemon) postFund(c echo.Context) error {
	var req amountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.farm.Fund(req.Caller, c.Param("token"), amount); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) getAPY(c echo.Context) error {
	token := c.Param("token")
	return c.JSON(http.StatusOK, map[string]any{"token": token, "apy": d.engine.farm.APY(token)})
}

func (d *Daemon) putAPY(c echo.Context) error {
	var req percentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.farm.SetAPY(req.Caller, c.Param("token"), req.Percent); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) postStake(c echo.Context) error {
	var req amountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	stakeID, err := d.engine.farm.Stake(req.Caller, c.Param("token"), amount)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]uint64{"stake_id": stakeID})
}

func (d *Daemon) postUnstake(c echo.Context) error {
	var req stakeIDRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	token := c.Param("token")
	if req.Amount == "" {
		paid, err := d.engine.farm.Unstake(req.Caller, token, req.StakeID)
		if err != nil {
			return apiError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"paid": paid.String()})
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	paid, err := d.engine.farm.UnstakeAmount(req.Caller, token, req.StakeID, amount)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"paid": paid.String()})
}

func (d *Daemon) postClaim(c echo.Context) error {
	var req stakeIDRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	paid, err := d.engine.farm.Claim(req.Caller, c.Param("token"), req.StakeID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"paid": paid.String()})
}

func (d *Daemon) getAccount(c echo.Context) error {
	token, account := c.Param("token"), c.Param("account")
	type positionInfo struct {
		StakeID   uint64 `json:"stake_id"`
		Principal string `json:"principal"`
		OpenedAt  int64  `json:"opened_at"`
	}
	last := d.engine.farm.LastStakeID(token, account)
	var positions []positionInfo
	for id := uint64(1); id <= last; id++ {
		openedAt := d.engine.farm.StakeDate(token, account, id)
		if openedAt == 0 {
			continue
		}
		positions = append(positions, positionInfo{
			StakeID:   id,
			Principal: d.engine.farm.Balance(token, account, id).String(),
			OpenedAt:  openedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"account":       account,
		"token":         token,
		"total_balance": d.engine.farm.TotalBalanceOf(token, account).String(),
		"funding":       d.engine.farm.FundingBy(token, account).String(),
		"last_stake_id": last,
		"positions":     positions,
	})
}

func (d *Daemon) postPause(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.farm.Pause(req.Caller); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) postUnpause(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.farm.Unpause(req.Caller); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) postBoostedFund(c echo.Context) error {
	var req amountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.boosted.Fund(req.Caller, amount); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) getBoostedAPY(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int64{"apy": d.engine.boosted.BaseAPY()})
}

func (d *Daemon) putBoostedAPY(c echo.Context) error {
	var req percentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.boosted.SetBaseAPY(req.Caller, req.Percent); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) putBonus(c echo.Context) error {
	category, err := strconv.ParseUint(c.Param("category"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	var req percentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.boosted.SetBonus(req.Caller, category, req.Percent); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) getBonus(c echo.Context) error {
	category, err := strconv.ParseUint(c.Param("category"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"category":    category,
		"percent":     d.engine.boosted.Bonus(category),
		"whitelisted": d.engine.boosted.InWhitelist(category),
	})
}

func (d *Daemon) postBoostedStake(c echo.Context) error {
	var req amountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.boosted.Stake(req.Caller, amount); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"balance": d.engine.boosted.Balance(req.Caller).String(),
	})
}

func (d *Daemon) postBoostedUnstake(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	paid, err := d.engine.boosted.Unstake(req.Caller)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"paid": paid.String()})
}

func (d *Daemon) postBoostedClaim(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	paid, err := d.engine.boosted.Claim(req.Caller)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"paid": paid.String()})
}

func (d *Daemon) postNFTStake(c echo.Context) error {
	var req nftBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.boosted.BatchStakeNFTs(req.Caller, req.Categories, req.Quantities); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) postNFTUnstake(c echo.Context) error {
	var req nftBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.boosted.BatchUnstakeNFTs(req.Caller, req.Categories, req.Quantities); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) getBoostedAccount(c echo.Context) error {
	account := c.Param("account")
	type holding struct {
		Category uint64 `json:"category"`
		Quantity uint64 `json:"quantity"`
	}
	var holdings []holding
	for _, id := range d.engine.boosted.NFTIDs(account) {
		holdings = append(holdings, holding{Category: id, Quantity: d.engine.boosted.NFTBalance(account, id)})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"account":    account,
		"balance":    d.engine.boosted.Balance(account).String(),
		"stake_date": d.engine.boosted.StakeDate(account),
		"total_apy":  d.engine.boosted.TotalAPYOf(account),
		"funding":    d.engine.boosted.FundingBy(account).String(),
		"holdings":   holdings,
	})
}

func (d *Daemon) postBoostedPause(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.boosted.Pause(req.Caller); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) postBoostedUnpause(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.boosted.Unpause(req.Caller); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type feeShareRequest struct {
	Recipient string `json:"recipient"`
	Percent   int64  `json:"percent"`
}

type mintRequest struct {
	Caller   string            `json:"caller"`
	To       string            `json:"to,omitempty"` // empty mints to the caller
	Quantity uint64            `json:"quantity"`
	Fees     []feeShareRequest `json:"fees"`
}

func (d *Daemon) postMint(c echo.Context) error {
	var req mintRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.To == "" {
		req.To = req.Caller
	}
	fees := make([]farm.FeeShare, len(req.Fees))
	for i, f := range req.Fees {
		fees[i] = farm.FeeShare{Recipient: f.Recipient, Percent: f.Percent}
	}
	id, err := d.engine.minter.Mint(req.Caller, req.To, fees, req.Quantity)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"id": id, "uri": d.engine.minter.URI(id)})
}

func (d *Daemon) getMintedNFT(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if !d.engine.minter.Exists(id) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "nft id was never minted"})
	}
	supply, creator := d.engine.minter.NFTInfo(id)
	return c.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"supply":  supply,
		"creator": creator,
		"uri":     d.engine.minter.URI(id),
	})
}

func (d *Daemon) getMintingFee(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"fee":        d.engine.minter.MintingFee().String(),
		"current_id": d.engine.minter.CurrentID(),
		"paused":     d.engine.minter.Paused(),
	})
}

func (d *Daemon) putMintingFee(c echo.Context) error {
	var req amountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	fee, err := parseAmount(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.minter.AdjustFee(req.Caller, fee); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type uriPrefixRequest struct {
	Caller string `json:"caller"`
	Prefix string `json:"prefix"`
}

func (d *Daemon) putURIPrefix(c echo.Context) error {
	var req uriPrefixRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.minter.SetURIPrefix(req.Caller, req.Prefix); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) postMinterPause(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.minter.Pause(req.Caller); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) postMinterUnpause(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := d.engine.minter.Unpause(req.Caller); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (d *Daemon) getConvert(c echo.Context) error {
	amount, err := parseAmount(c.Param("amount"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	value, err := d.engine.converter.Value(amount)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"value": value.String()})
}
