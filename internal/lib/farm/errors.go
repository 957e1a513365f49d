package farm

import (
	"errors"
)

var (
	ErrAmountNotPositive = errors.New("amount should be bigger than 0")
	ErrAPYNotPositive    = errors.New("apy should be bigger than 0")
	ErrUnknownToken      = errors.New("token is not a known contract address")
	ErrWrongStakeID      = errors.New("wrong stake id")
	ErrEmptyPosition     = errors.New("balance must be bigger than 0")
	ErrEmptyBalance      = errors.New("balance should be more than 0")
	ErrInsufficientStake = errors.New("insufficient funds")
	ErrReserveTooLow     = errors.New("total funding not enough to pay interest")
	ErrNotOwner          = errors.New("caller is not the owner")
	ErrPaused            = errors.New("paused")
	ErrNotWhitelisted    = errors.New("nft id not in whitelist")
	ErrBadBonus          = errors.New("nft id and bonus must be bigger than 0")
	ErrBatchMismatch     = errors.New("ids and quantities length mismatch")
	ErrEmptySupply       = errors.New("lp token total supply is 0")
	ErrNoFeeRecipient    = errors.New("fee recipient should be present")
	ErrBadFeePercent     = errors.New("fee percent should be positive")
	ErrFeeTooSmall       = errors.New("minting fee share should be bigger than 0")
)
