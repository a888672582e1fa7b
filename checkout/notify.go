package checkout

import (
	"bytes"
	"html/template"

	"github.com/AlexJ236/Impulso-Digital/mailer"
	"github.com/AlexJ236/Impulso-Digital/models"
)

const cryptoCurrency = "USDT"

var captureTemplate = template.Must(template.New("capture").Parse(`<h1>New payment received</h1>
<p><strong>Product:</strong> {{.Product}}</p>
<p><strong>Amount:</strong> {{.Amount}} {{.Currency}}</p>
<p><strong>Order ID:</strong> {{.OrderID}}</p>
<p><strong>Customer:</strong> {{.CustomerName}}</p>
<p><strong>Customer email:</strong> {{.CustomerEmail}}</p>
`))

var cryptoTemplate = template.Must(template.New("crypto").Parse(`<h1>New crypto payment proof</h1>
<p><strong>Product:</strong> {{.ProductName}}</p>
<p><strong>Price:</strong> {{.ProductPrice}} {{.Currency}}</p>
<p><strong>Customer:</strong> {{.CustomerName}}</p>
<p><strong>Customer email:</strong> {{.CustomerEmail}}</p>
<p>The proof of payment is attached. Verify the transfer before granting access.</p>
`))

type captureDetails struct {
	Product       string
	Amount        string
	Currency      string
	OrderID       string
	CustomerName  string
	CustomerEmail string
}

func captureMessage(to string, d captureDetails) (mailer.Message, error) {
	var body bytes.Buffer
	if err := captureTemplate.Execute(&body, d); err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{
		To:      to,
		Subject: "New payment received: " + d.Product,
		HTML:    body.String(),
	}, nil
}

func cryptoMessage(to string, proof models.CryptoProof) (mailer.Message, error) {
	var body bytes.Buffer
	err := cryptoTemplate.Execute(&body, struct {
		models.CryptoProof
		Currency string
	}{proof, cryptoCurrency})
	if err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{
		To:      to,
		Subject: "New crypto payment proof: " + proof.ProductName,
		HTML:    body.String(),
		Attachments: []mailer.Attachment{
			{Filename: proof.Filename, Content: proof.Content},
		},
	}, nil
}
