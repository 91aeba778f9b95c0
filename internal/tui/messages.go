package tui

import "github.com/Veraticus/the-books-must-balance/internal/model"

type candidatesLoadedMsg struct {
	err          error
	transactions []model.Transaction
}

type actionDoneMsg struct {
	err         error
	transaction *model.Transaction
	action      string
}
