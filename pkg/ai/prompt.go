package ai

import "fmt"

const systemPrompt = "你是一个专门处理发票信息的助手，请严格按照要求的JSON格式返回提取的信息。" +
	"如果是机票或者火车票，请务必把【出发地-目的地，出发日期，出发时间，航班号/车次，舱位等级】填入项目名称。"

func buildPrompt(text string) string {
	return fmt.Sprintf(`请从以下发票文本中提取关键信息，以JSON格式返回以下字段：
- invoice_date (开票日期)
- seller (开票方名称)
- amount (含税金额，只需数字)
- project_name (项目名称，从货物或应税劳务、服务名称中提取)
- invoice_no (发票号码)

发票文本内容：
%s

请只返回JSON格式的数据，不要有其他说明文字。格式如下：
{
    "invoice_date": "YYYY年MM月DD日",
    "seller": "公司名称",
    "amount": "金额数字",
    "project_name": "项目名称",
    "invoice_no": "发票号码"
}`, text)
}
