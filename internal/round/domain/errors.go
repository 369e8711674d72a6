package domain

import "errors"

var (
	// ErrRoundNotOpen aposta fora da janela Open (corrigível pelo usuário)
	ErrRoundNotOpen = errors.New("round not open")

	// ErrInsufficientFunds saldo menor que o stake
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrRoundNotClosed resultado consultado antes do fechamento
	ErrRoundNotClosed = errors.New("round not closed")

	// ErrStorageConflict conflito de concorrência após esgotar as tentativas
	ErrStorageConflict = errors.New("storage conflict")

	ErrUnknownRound       = errors.New("unknown round")
	ErrUnknownWager       = errors.New("unknown wager")
	ErrInvalidStakeTier   = errors.New("invalid stake tier")
	ErrInvalidSide        = errors.New("invalid side")
	ErrInvalidParticipant = errors.New("invalid participant")
)
