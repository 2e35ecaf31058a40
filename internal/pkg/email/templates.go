package email

// Template names
const (
	TemplateVerificationCode = "verification_code"
	TemplateWelcome          = "welcome"
)

// BaseTemplate is the base layout for all emails
const BaseTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;font-family:Arial,sans-serif;background:#fffbea;color:#1f1f1f;">
    <div style="max-width:600px;margin:0 auto;padding:40px 20px;">
        <h1 style="text-align:center;color:#e0a800;">Banana AI Studio</h1>
        <div style="background:#ffffff;border-radius:12px;padding:32px;">
            {{.Content}}
        </div>
    </div>
</body>
</html>`

// VerificationCodeTemplate carries the registration code
const VerificationCodeTemplate = `
<h2>Verify your email</h2>
<p>Use this code to finish creating your account:</p>
<p style="font-size:32px;letter-spacing:8px;font-weight:bold;text-align:center;">{{.Code}}</p>
<p>The code expires in {{.TTLMinutes}} minutes. If you did not request it, ignore this email.</p>
`

// WelcomeTemplate greets a newly registered user
const WelcomeTemplate = `
<h2>Welcome!</h2>
<p>Your account {{.Email}} is ready.{{if .Credits}} We added {{.Credits}} credits to get you started.{{end}}</p>
<p><a href="{{.DashboardURL}}">Open Banana AI Studio</a></p>
`
