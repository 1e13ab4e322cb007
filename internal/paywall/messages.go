package paywall

import (
	"fmt"
)

func confirmationText(cfg Config) string {
	return fmt.Sprintf("✨ **¡Pago confirmado exitosamente!** ✨\n\n"+
		"Ahora tienes acceso completo e ilimitado a %s.\n\n"+
		"Puedes preguntarme lo que desees. ¿Por dónde quieres continuar?", cfg.ServiceName)
}

const (
	pendingPaymentText  = "⏳ Tu pago está siendo procesado. Te notificaremos cuando se confirme."
	rejectedPaymentText = "❌ El pago no se pudo completar. Por favor, intenta nuevamente."
	backendErrorText    = "🔮 Las energías cósmicas están perturbadas... Error de conexión. Por favor, inténtalo de nuevo. Intenta de nuevo cuando las vibraciones se estabilicen."
	premiumUnlockText   = "🦋 **¡Has desbloqueado el acceso Premium completo!** 🦋\n\nAhora tienes acceso ilimitado a todas mis consultas."
	fallbackWelcomeText = "Bienvenido. ¿En qué puedo ayudarte hoy?"
)

func creditUsedText(remaining int) string {
	return fmt.Sprintf("✨ *Has utilizado una consulta gratuita* ✨\n\nTe quedan **%d** consultas gratuitas disponibles.", remaining)
}
