package handlers

import "fmt"

func loginLimitMessage(wait int) string {
	return fmt.Sprintf("Too many login attempts. Please try again in %s.", humaniseWait(wait))
}

func registerLimitMessage(wait int) string {
	return fmt.Sprintf("Too many accounts created from this address. Please try again in %s.", humaniseWait(wait))
}

func resendLimitMessage(wait int) string {
	return fmt.Sprintf("A confirmation email was sent recently. You can request another one in %s.", humaniseWait(wait))
}

func passwordResetLimitMessage(wait int) string {
	return fmt.Sprintf("Too many password reset requests. Please try again in %s.", humaniseWait(wait))
}

// CommentLimitMessage is shared by the comment and legacy comment routes.
func CommentLimitMessage(wait int) string {
	return fmt.Sprintf("You are commenting too quickly. Please wait %s before posting again.", humaniseWait(wait))
}

// humaniseWait renders a wait in seconds, switching to minutes from two minutes upward.
func humaniseWait(seconds int) string {
	switch {
	case seconds <= 1:
		return "1 second"
	case seconds < 120:
		return fmt.Sprintf("%d seconds", seconds)
	}
	minutes := (seconds + 59) / 60
	return fmt.Sprintf("%d minutes", minutes)
}
