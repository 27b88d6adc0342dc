package auth

import "fmt"

// resetMailBody renders the password-reset mail. The link expires with the
// reset token TTL; the copy mentions 15 minutes to match the default.
func resetMailBody(username, resetLink string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f5f5f5; margin: 0; padding: 0;">
  <div style="background-color: #ffffff; border-radius: 10px; padding: 40px; max-width: 600px; margin: 40px auto;">
    <h2 style="color: #333;">Password Reset</h2>
    <p>Hello <b><i>%s</i></b>,</p>
    <p>You have requested to reset your password. Click the button below to proceed:</p>
    <a href="%s" style="display: inline-block; padding: 8px; background-color: #007bff; color: #fff; text-decoration: none; border-radius: 5px; font-weight: bold;">Reset Password</a>
    <p>If the button above does not work, copy and paste the following link into your browser:</p>
    <p>%s</p>
    <p>This link will expire in 15 minutes for security reasons.</p>
    <p>If you did not request a password reset, please ignore this email.</p>
    <p style="color: #777;">Best regards,<br>BudgetTrackio Team</p>
  </div>
</body>
</html>`, username, resetLink, resetLink)
}
