package handlers

import (
	"github.com/gofiber/fiber/v2"
)

type LegalHandler struct{}

func NewLegalHandler() *LegalHandler {
	return &LegalHandler{}
}

func (h *LegalHandler) PrivacyPolicy(c *fiber.Ctx) error {
	return c.Type("html").SendString(`<!DOCTYPE html>
<html><head><title>Privacy Policy - Paralex</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>body{font-family:-apple-system,BlinkMacSystemFont,sans-serif;max-width:800px;margin:0 auto;padding:20px;color:#333}h1{color:#1a1a1a}h2{color:#444;margin-top:30px}</style>
</head><body>
<h1>Privacy Policy</h1>
<p>Last updated: August 2026</p>
<h2>Information We Collect</h2>
<p>We collect your email address, your conversations with the assistant, and the document text you submit for review, so that we can provide the service.</p>
<h2>How We Use Your Information</h2>
<p>Your data is used solely to operate Paralex, authenticate your account, and improve our services. Documents you upload are sent to our AI provider to generate answers and are not used to train models.</p>
<h2>Data Storage</h2>
<p>Your data is stored securely on encrypted servers. We do not sell your personal information to third parties.</p>
<h2>Account Deletion</h2>
<p>You can delete your account, your conversations, and all associated data at any time from the dashboard settings.</p>
<h2>Contact</h2>
<p>For questions about this policy, contact us at support@paralex.app</p>
</body></html>`)
}

func (h *LegalHandler) TermsOfService(c *fiber.Ctx) error {
	return c.Type("html").SendString(`<!DOCTYPE html>
<html><head><title>Terms of Service - Paralex</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>body{font-family:-apple-system,BlinkMacSystemFont,sans-serif;max-width:800px;margin:0 auto;padding:20px;color:#333}h1{color:#1a1a1a}h2{color:#444;margin-top:30px}</style>
</head><body>
<h1>Terms of Service</h1>
<p>Last updated: August 2026</p>
<h2>Acceptance</h2>
<p>By using Paralex, you agree to these terms.</p>
<h2>Not Legal Advice</h2>
<p>Paralex provides general information about documents you submit. It is not a law firm and its output is not legal advice. Consult a licensed attorney for decisions with legal consequences.</p>
<h2>Subscriptions</h2>
<p>Pro features require an active subscription. Subscriptions renew automatically unless cancelled before the end of the current billing period; after cancellation you keep Pro access until the period ends.</p>
<h2>Termination</h2>
<p>We may suspend or terminate accounts that violate these terms.</p>
<h2>Contact</h2>
<p>For questions, contact us at support@paralex.app</p>
</body></html>`)
}
