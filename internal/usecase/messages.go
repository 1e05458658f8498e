package usecase

// User-facing texts. The bot speaks Portuguese.
const (
	msgUnrecognizedCommand = `Comando "%s" não reconhecido. Use /comandos para ver a lista de comandos disponíveis.`
	msgCommandFailed       = `Ocorreu um erro ao executar o comando "%s". Tente novamente mais tarde.`
	msgCommandTimeout      = `Tempo limite de execução do comando "%s" excedido.`
	msgFallback            = "Comando não reconhecido. Use /comandos para começar."
	msgProcessingFailed    = "Ocorreu um erro ao processar sua mensagem. Tente novamente mais tarde."

	msgUnauthorized = "Consulte o proprietário do BOT para poder usa-lo!"
	msgClosed       = "Encerrado!\n /comandos"
	msgHelp         = "Ajuda\n\nUtilize os seguintes comandos:\n/comandos - Lista de todos os comandos disponíveis\n/encerrar - Encerra o processo atual"

	msgRegisterGreeting  = "Prazer em conhecê-lo Sr. %s,\nPor gentileza, informe um PIN de pelo menos %d dígitos:"
	msgRegisterShortPIN  = "Sr. %s,\nO PIN precisa ter ao menos %d dígitos. Você informou apenas %d."
	msgRegisterConfirm   = "Certo Sr. %s,\nAgora digite novamente o PIN para confirmar:"
	msgRegisterMismatch  = "Sr. %s,\nOs PINs não correspondem. Tente novamente."
	msgRegisterStrikes   = "O Sr. errou a confirmação %d vezes. Reiniciaremos o processo! /OK"
	msgRegisterPUK       = "⚠️ ATENÇÃO: Seu PUK é -| %s |-.\nNÃO PERCA nem COMPARTILHE este código. Ele será necessário para redefinir ou desbloquear seu PIN.\nESTA MENSAGEM SERÁ APAGADA EM %d segundos!"
	msgRegisterSuccess   = "Parabéns Sr. %s,\nUsuário <b>MASTER</b> criado com sucesso!\n/comandos - /encerrar"
	msgRegisterDBFailure = "ERRO CRÍTICO no banco de dados. Falha ao salvar usuário Master: %s"
)

// builtinCommandList heads the /comandos reply; registry names follow.
var builtinCommandList = []string{
	"/comandos - Lista de comandos do bot.",
	"/ajuda - Ajuda do bot.",
	"/encerrar - Encerra precocemente qualquer tarefa do bot.",
}
